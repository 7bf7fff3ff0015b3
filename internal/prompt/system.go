package prompt

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// SystemData parameterizes a variant system prompt.
type SystemData struct {
	// Variant selects the tool guide: bash, fs, sql or vector.
	Variant string
	// Commands lists sandbox commands, one per line. Only the bash guide uses it.
	Commands string
}

const corpusOverview = `You answer questions about a fixed snapshot of GitHub activity: repositories,
users, issues, pull requests, comments and events. The snapshot never changes
while you work, and nothing outside it is available.
`

const answerRules = `
When you have enough evidence, stop calling tools and reply with the final
answer as plain text. Be direct: state the answer first, then at most a few
sentences of supporting detail. If the data cannot answer the question, say so.
You have a limited number of steps, so prefer precise queries over browsing.
`

const docsLayout = `Documents are JSON files laid out as:
  {owner}/{repo}/repo.json
  {owner}/{repo}/issues/{number}.json
  {owner}/{repo}/pulls/{number}.json
  users/{login}.json
`

var guides = map[string]string{
	"bash": `Use the bash tool to run shell scripts. The corpus is mounted at /.
` + docsLayout + `Pipelines, loops, variables and redirection work as in bash. Writes go to an
in-memory scratch layer (use /tmp) and never change the corpus.
Commands available besides shell builtins:
%s`,
	"fs": `Use the file tools to explore the corpus documents. Paths are relative to the
corpus root.
` + docsLayout + `Prefer find_files and count_files for counting, search_files for text, and
read_json with a jq query to pull single fields out of documents.
`,
	"sql": `Use the SQL tools to query a read-only DuckDB database. Tables: repos, users,
issues, pulls, comments, events. Only SELECT, WITH, SHOW, DESCRIBE and EXPLAIN
statements run. Start with list_tables or describe_table when unsure of a
column, and aggregate in SQL rather than reading many rows.
`,
	"vector": `Use semantic_search to find issues and pull requests whose text is similar to a
query, then get_item to read the full record of a hit. Similarity search is
good at finding topics, not at exact counting; say so when a question needs an
exact count you cannot establish.
`,
}

// SystemPrompt renders the system prompt component.
func SystemPrompt(data SystemData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		guide, ok := guides[data.Variant]
		if !ok {
			return fmt.Errorf("no tool guide for variant %q", data.Variant)
		}
		if data.Variant == "bash" {
			guide = fmt.Sprintf(guide, data.Commands)
		}
		_, err := io.WriteString(w, corpusOverview+"\n"+guide+answerRules)
		return err
	})
}
