package chat

// sqlSystemPrompt asks the model for a single SQLite statement and nothing
// else. The schema summary is appended by the caller.
const sqlSystemPrompt = `You translate natural-language questions into SQL for a SQLite database.
Respond with exactly one SQL statement and no commentary.
Use only tables and columns from the schema below.
If the question cannot be answered from the schema, respond with: SELECT NULL AS unanswerable;

Schema:
%s`

// explainSystemPrompt turns a query result back into prose.
const explainSystemPrompt = `You summarize database query results for a non-technical reader.
Answer the user's original question in one short paragraph using only the data provided.
Do not mention SQL, JSON, or the database.`

const explainUserPrompt = `Question: %s

Query executed: %s

Result (JSON): %s`

// explainErrorPrompt reports a failed query in plain language.
const explainErrorPrompt = `Question: %s

The query "%s" failed with error: %s

Explain briefly that the question could not be answered and why.`
