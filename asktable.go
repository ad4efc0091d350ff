// Package asktable answers natural-language questions about tabular data.
//
// The pieces compose bottom-up:
//
//	df, _ := frame.ReadCSVFile("sales.csv")
//	a := assistant.New(cfg, assistant.WithLLM(client))
//	ans, err := a.Chat(ctx, "revenue by region", df)
//
// frame holds the data, schema classifies its columns, translator turns a
// question into an engine.QuerySpec (with a language model or keyword
// heuristics) and engine executes it locally, returning chart, table or text
// output. quality and stats cover data cleaning and statistical checks.
//
// Only column names and distinct dimension values are sent to a model.
// Rows never leave the process.
package asktable
