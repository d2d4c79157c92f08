package knowledge

import "context"

// SeedDocument is one entry of the sample corpus.
type SeedDocument struct {
	Title string
	Text  string
}

// SampleCorpus returns the demo knowledge base content.
func SampleCorpus() []SeedDocument {
	return []SeedDocument{
		{
			Title: "Augmented LLM Overview",
			Text:  "Augmented LLM systems have four key characteristics: 1. Memory - letting the LLM remember past interactions, 2. Information Retrieval - adding RAG for context, 3. Tool Usage - giving the LLM access to functions and APIs, 4. Workflow Control - the LLM output controls which tools are used.",
		},
		{
			Title: "Memory and Context Engineering",
			Text:  "Memory systems retain past interactions so the LLM can continue intelligently across sessions. Context engineering supplies the right information at the right time to enhance model output. Historical memory without RAG has simple implementation but limited context scope. With RAG, the system dynamically fetches fresh context and improves grounding.",
		},
		{
			Title: "Retrieval Augmented Generation",
			Text:  "RAG is a popular technique that enhances LLM responses by retrieving relevant external knowledge from a knowledge base before generating an answer. It improves accuracy, reduces hallucinations, and allows the model to provide contextually relevant and up-to-date information.",
		},
		{
			Title: "Embeddings and Vector Databases",
			Text:  "Embeddings are numerical representations that capture meaning. They're created through models like Word2Vec and BERT, using cosine similarity for comparison. Vector databases store these embeddings for efficient similarity search, which powers applications like RAG, semantic search, and recommendation engines.",
		},
		{
			Title: "Tool and Function Calling",
			Text:  "Tool or function calling lets an LLM call external tools or APIs to fetch live data, do calculations, access databases, and trigger business processes. The LLM generates a special output describing which tool to call and what parameters to send, then the framework runs the tool and feeds results back to the LLM.",
		},
		{
			Title: "Model Context Protocol",
			Text:  "MCP (Model Context Protocol) is a standard way for LLMs to discover and call tools. It defines tool names, input parameters, and expected output formats. MCP matters because it avoids ad hoc formats, makes LLMs interoperable across different apps, helps manage security and validation, and enables complex workflows through agent orchestration.",
		},
		{
			Title: "SmartAdvocate Integration Naming Conventions",
			Text:  "The SmartAdvocate integration uses a standardized file naming convention of [CaseID]_[DocType]_[VersionDate].ext for document uploads. This convention ensures proper document tracking and version control in the legal case management system. For example, 'ABC123_Medical_20250601.pdf' represents medical records for case ABC123 dated June 1, 2025.",
		},
		{
			Title: "SmartAdvocate API Configuration",
			Text:  "Configured API polling and document upload protocols for SmartAdvocate integration handle automatic synchronization between AI systems and the case management platform. The system polls for updates every 15 minutes and automatically categorizes incoming documents based on embedded metadata.",
		},
		{
			Title: "Law Firm AI Agent Framework",
			Text:  "Implemented AI agents for law firm automation include specialized tools like Medical Record Chase, Document Classification, Bill of Particulars Generation, and SmartAdvocate integration. These agents work together in an orchestrated workflow to minimize manual document handling and accelerate case processing.",
		},
		{
			Title: "Document Classification for Legal Documents",
			Text:  "The Document Classification agent uses embeddings to categorize incoming legal documents by type, such as medical records, court filings, or client correspondence. This allows for automated routing and filing within case management systems. The classification model achieves 94% accuracy across 27 document categories.",
		},
		{
			Title: "Medical Record Chase Automation",
			Text:  "The Medical Record Chase agent automates the process of requesting and following up on medical records from healthcare providers, tracking receipt status, and identifying missing documents critical to personal injury cases. The system generates customized follow-up schedules based on provider response patterns.",
		},
		{
			Title: "Bill of Particulars Generation",
			Text:  "The Bill of Particulars Generation agent extracts relevant information from medical records and case notes to automatically draft Bills of Particulars documents. The system uses RAG to find similar past cases and adapts their language to the current case facts, reducing drafting time by 75%.",
		},
	}
}

// Adder is the store surface Seed writes through.
type Adder interface {
	Add(ctx context.Context, text string, metadata map[string]any) (string, error)
}

// Seed adds the sample corpus to the store and returns how many documents
// were written. On failure the count still reflects the documents already
// persisted before the error.
func Seed(ctx context.Context, store Adder) (int, error) {
	written := 0
	for _, doc := range SampleCorpus() {
		metadata := map[string]any{
			"title":  doc.Title,
			"source": "course_material",
		}
		if _, err := store.Add(ctx, doc.Text, metadata); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
