package app

import (
	"log"

	"workdocs-ai/internal/ai"
)

// DocumentCitation points at one of the requesting user's own documents.
type DocumentCitation struct {
	DocumentID uint   `json:"document_id"`
	FileName   string `json:"file_name"`
	DocType    string `json:"doc_type"`
	Excerpt    string `json:"excerpt"`
}

// RegulationCitation points at public reference material.
type RegulationCitation struct {
	RegulationID uint   `json:"regulation_id"`
	Title        string `json:"title"`
	Reference    string `json:"reference"`
	Excerpt      string `json:"excerpt"`
}

type WebCitation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// Citations are the three disjoint buckets surfaced to a user. There is
// no fourth bucket: a reference that resolves to none of these is
// dropped.
type Citations struct {
	Documents   []DocumentCitation   `json:"documents"`
	Regulations []RegulationCitation `json:"regulations"`
	Web         []WebCitation        `json:"web"`
}

// CitationFilter converts raw retrieval references into user-safe
// citation records. A file reference may only surface when it resolves
// to the requesting user's own document or to a public regulation;
// anything else never reaches the caller.
type CitationFilter struct {
	docs DocumentStore
	regs RegulationStore
}

func NewCitationFilter(docs DocumentStore, regs RegulationStore) *CitationFilter {
	return &CitationFilter{docs: docs, regs: regs}
}

func (f *CitationFilter) Filter(userID uint, raw []ai.RawCitation) (*Citations, error) {
	out := &Citations{
		Documents:   []DocumentCitation{},
		Regulations: []RegulationCitation{},
		Web:         []WebCitation{},
	}

	for _, citation := range raw {
		switch citation.Source {
		case ai.SourceWebSearch:
			// Web results carry no private ownership and pass through.
			out.Web = append(out.Web, WebCitation{
				URL:     citation.URL,
				Title:   citation.Title,
				Excerpt: citation.Excerpt,
			})
		case ai.SourceFileSearch:
			if err := f.classifyFile(userID, citation, out); err != nil {
				return nil, err
			}
		default:
			log.Printf("dropping citation with unknown source %q for user %d", citation.Source, userID)
		}
	}
	return out, nil
}

func (f *CitationFilter) classifyFile(userID uint, citation ai.RawCitation, out *Citations) error {
	doc, err := f.docs.GetByVectorFileIDAndUserID(citation.FileID, userID)
	if err != nil {
		return err
	}
	if doc != nil {
		out.Documents = append(out.Documents, DocumentCitation{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			DocType:    doc.DocType,
			Excerpt:    citation.Excerpt,
		})
		return nil
	}

	reg, err := f.regs.GetByVectorFileID(citation.FileID)
	if err != nil {
		return err
	}
	if reg != nil {
		out.Regulations = append(out.Regulations, RegulationCitation{
			RegulationID: reg.ID,
			Title:        reg.Title,
			Reference:    reg.Reference,
			Excerpt:      citation.Excerpt,
		})
		return nil
	}

	// Unresolvable under this user: either foreign material or a stale
	// index entry. Logged and dropped.
	log.Printf("dropping unauthorized citation file=%s user=%d", citation.FileID, userID)
	return nil
}
