package types

import (
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// IndexSchemaVersion is the repository index schema this build understands.
const IndexSchemaVersion = 1

const (
	MediaTypeRepositoryIndexJson = "application/vnd.zerospeech.repository.index.v1.json"
	MediaTypeItemArchiveTarGz    = "application/vnd.zerospeech.item.archive.v1.tar+gz"
	MediaTypeSubmissionZip       = "application/vnd.zerospeech.submission.v1.zip"
	MediaTypeLeaderboardJson     = "application/vnd.zerospeech.leaderboard.v1.json"
)

type ResourceKind string

const (
	KindDataset    ResourceKind = "datasets"
	KindCheckpoint ResourceKind = "checkpoints"
	KindSample     ResourceKind = "samples"
)

func AllResourceKinds() []ResourceKind {
	return []ResourceKind{KindDataset, KindCheckpoint, KindSample}
}

type Descriptor struct {
	Name        string            `json:"name"`
	MediaType   string            `json:"mediaType,omitempty"`
	Digest      digest.Digest     `json:"digest,omitempty"`
	Size        int64             `json:"size,omitempty"`
	Modified    time.Time         `json:"modified,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func SortDescriptorName(a, b Descriptor) bool {
	return strings.Compare(a.Name, b.Name) < 0
}

// ResourceItem is one downloadable entry of the repository index.
type ResourceItem struct {
	Descriptor `json:",inline"`
	Kind       ResourceKind `json:"kind"`
	// Origin is the base URL the archive is served from.
	Origin string `json:"origin"`
	// Description is shown by `zrc <kind>`.
	Description string `json:"description,omitempty"`
}

// OriginHost is the bare host of the origin URL, for display.
func (r ResourceItem) OriginHost() string {
	host := r.Origin
	if i := strings.Index(host, "://"); i != -1 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i != -1 {
		host = host[:i]
	}
	return host
}

type RepositoryIndex struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType,omitempty"`
	LastModified  time.Time         `json:"lastModified,omitempty"`
	Datasets      []ResourceItem    `json:"datasets"`
	Checkpoints   []ResourceItem    `json:"checkpoints"`
	Samples       []ResourceItem    `json:"samples"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

func (i RepositoryIndex) Items(kind ResourceKind) []ResourceItem {
	switch kind {
	case KindDataset:
		return i.Datasets
	case KindCheckpoint:
		return i.Checkpoints
	case KindSample:
		return i.Samples
	default:
		return nil
	}
}

func (i RepositoryIndex) Find(kind ResourceKind, name string) (ResourceItem, bool) {
	for _, item := range i.Items(kind) {
		if item.Name == name {
			return item, true
		}
	}
	return ResourceItem{}, false
}

type SubmissionStatus string

const (
	StatusReceived   SubmissionStatus = "received"
	StatusValidating SubmissionStatus = "validating"
	StatusScoring    SubmissionStatus = "scoring"
	StatusDone       SubmissionStatus = "done"
	StatusRejected   SubmissionStatus = "rejected"
)

// Terminal reports whether the receipt will not change anymore.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusDone || s == StatusRejected
}

// SubmissionReceipt tracks one uploaded submission on the server.
type SubmissionReceipt struct {
	ID        string             `json:"id"`
	Benchmark string             `json:"benchmark"`
	Submitter string             `json:"submitter,omitempty"`
	Digest    digest.Digest      `json:"digest,omitempty"`
	Size      int64              `json:"size,omitempty"`
	Status    SubmissionStatus   `json:"status"`
	Message   string             `json:"message,omitempty"`
	Scores    map[string]float64 `json:"scores,omitempty"`
	Created   time.Time          `json:"created"`
	Updated   time.Time          `json:"updated,omitempty"`
}

type LeaderboardEntry struct {
	Benchmark   string             `json:"benchmark"`
	Submitter   string             `json:"submitter"`
	Institution string             `json:"institution,omitempty"`
	System      string             `json:"system,omitempty"`
	Scores      map[string]float64 `json:"scores"`
	Overall     float64            `json:"overall"`
	Submitted   time.Time          `json:"submitted"`
}

type Leaderboard struct {
	Benchmark string             `json:"benchmark"`
	Updated   time.Time          `json:"updated"`
	Entries   []LeaderboardEntry `json:"entries"`
}
