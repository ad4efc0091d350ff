package query

var examples = map[string][]string{
	CategoryVisualization: {
		"Show me a bar chart of sales by region",
		"Plot revenue over time as a line chart",
		"Create a pie chart of orders by product",
		"Draw a stacked bar of units by region and product",
	},
	CategoryAggregation: {
		"What is the total revenue?",
		"What is the average order value by region?",
		"How many orders were placed in March?",
		"Which product has the highest sales?",
	},
	CategoryFiltering: {
		"Show only orders from the North region",
		"List sales where product is Widget",
		"Total revenue excluding the East region",
	},
	CategorySorting: {
		"Top 5 products by revenue",
		"Rank regions by total units sold",
		"Sort customers by spend in descending order",
	},
	CategoryStatistical: {
		"What is the correlation between price and units?",
		"Find outliers in revenue",
		"Is revenue normally distributed?",
		"Compare mean revenue between North and South with a t-test",
	},
	CategoryComparison: {
		"Compare sales across regions",
		"North versus South revenue",
		"What percentage of revenue came from the North region?",
	},
	CategoryTrend: {
		"How has revenue changed over time?",
		"Show the monthly trend of orders",
		"Has revenue increased since January?",
	},
	CategoryDataInfo: {
		"What columns are in the dataset?",
		"How many rows are there?",
		"Which columns have missing values?",
	},
	CategoryGeneral: {
		"What is the total revenue?",
		"Show me sales by region",
		"Show all records",
		"How has revenue changed over time?",
	},
}

// Examples returns sample questions for a category. Unknown categories get
// the general examples.
func Examples(category string) []string {
	ex, ok := examples[category]
	if !ok {
		ex = examples[CategoryGeneral]
	}
	return append([]string(nil), ex...)
}

// Categories lists the categories Examples knows, in display order.
func Categories() []string {
	return append(append([]string(nil), categoryOrder...), CategoryGeneral)
}
