package rag

import (
	"strings"

	"github.com/nextrun/augment/internal/domain"
)

// backupCorpus is the static grounding set used when the knowledge base is
// too cold to search (fewer than 3 documents). The similarities are fixed
// nominal values; the corpus exists so a cold store never produces an
// empty-context answer.
func backupCorpus() []domain.SearchResult {
	return []domain.SearchResult{
		{
			Document: domain.Document{
				ID:       "doc_1",
				Text:     "Augmented LLM systems have four key characteristics: 1. Memory - letting the LLM remember past interactions, 2. Information Retrieval - adding RAG for context, 3. Tool Usage - giving the LLM access to functions and APIs, 4. Workflow Control - the LLM output controls which tools are used.",
				Metadata: map[string]any{"title": "Augmented LLM Overview"},
			},
			Similarity: 0.95,
		},
		{
			Document: domain.Document{
				ID:       "doc_2",
				Text:     "Law firm automation AI agents include Medical Record Chase (for requesting and tracking medical records), Document Classification (categorizes legal documents with 94% accuracy), Bill of Particulars Generation (drafts legal documents using RAG), and SmartAdvocate integration (uses naming convention [CaseID]_[DocType]_[VersionDate].ext).",
				Metadata: map[string]any{"title": "Law Firm AI Agent Framework"},
			},
			Similarity: 0.87,
		},
		{
			Document: domain.Document{
				ID:       "doc_3",
				Text:     "SmartAdvocate integration uses a standardized file naming convention of [CaseID]_[DocType]_[VersionDate].ext for document uploads. API polling and document upload protocols handle automatic synchronization between AI systems and the case management platform.",
				Metadata: map[string]any{"title": "SmartAdvocate Integration"},
			},
			Similarity: 0.82,
		},
	}
}

// selectBackup routes a question to backup corpus entries by case-insensitive
// keyword match. Questions matching no cluster get the whole corpus; this
// over-broad fallback is intentional, observable behavior.
func selectBackup(question string) []domain.SearchResult {
	corpus := backupCorpus()
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "augmented llm"), strings.Contains(q, "llm"):
		return corpus[:1]
	case strings.Contains(q, "law firm"), strings.Contains(q, "legal"), strings.Contains(q, "agent"):
		return corpus[1:2]
	case strings.Contains(q, "smartadvocate"), strings.Contains(q, "naming"):
		return corpus[2:3]
	default:
		return corpus
	}
}
