// Package agent implements the four-node question-answering state machine:
// Manager classifies and routes, Table and RAG answer their half
// independently, Combiner reconciles. AgentState is the value threaded
// through all four; each field is written exactly once, by the node that
// owns it, so no node needs to lock it.
package agent

// State carries everything known about one question from receipt through
// to its final answer. Fields are written once, in node order: Manager
// populates Classification/NeedsTable/NeedsRAG/the two sub-queries; Table
// and RAG each populate their own response; Combiner writes Answer.
type State struct {
	Question string
	DocID    string

	Classification string // "table", "rag", or "both"
	NeedsTable     bool
	NeedsRAG       bool
	TableSubQuery  string
	RAGSubQuery    string

	TableResponse string
	RAGResponse   string

	Answer string
}
