package model

import "time"

// ArtifactKind selects what the generate command produces.
type ArtifactKind string

const (
	ArtifactTranscript ArtifactKind = "transcript"
	ArtifactSummary    ArtifactKind = "summary"
	ArtifactObjective  ArtifactKind = "objective"
	ArtifactSubjective ArtifactKind = "subjective"
)

// ArtifactExport is the top-level JSON structure written by the generate command.
type ArtifactExport struct {
	FileName    string       `json:"file_name"`
	Artifact    ArtifactKind `json:"artifact"`
	GeneratedAt time.Time    `json:"generated_at"`
	WordCount   int          `json:"word_count"`
	CharCount   int          `json:"char_count"`
	Transcript  string       `json:"transcript,omitempty"`
	Summary     *Summary     `json:"summary,omitempty"`
	Questions   *QuestionSet `json:"questions,omitempty"`
}
