package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryTag is the fixed domain tag of every memory namespace
const MemoryTag = "memories"

var (
	ErrEmptyMemoryText = goerr.New("memory text is empty")
	ErrInvalidUserID   = goerr.New("invalid user id")
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Short returns the id prefix shown to the model and users
func (id MemoryID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Namespace scopes memory records to one user
type Namespace struct {
	Tag    string
	UserID string
}

// NewNamespace returns the memory namespace of the user
func NewNamespace(userID string) Namespace {
	return Namespace{Tag: MemoryTag, UserID: userID}
}

// Validate checks both parts of the namespace are set
func (ns Namespace) Validate() error {
	if ns.Tag == "" {
		return goerr.New("namespace tag is empty")
	}
	if ns.UserID == "" {
		return goerr.Wrap(ErrInvalidUserID, "user id is empty")
	}
	return nil
}

func (ns Namespace) String() string {
	return ns.Tag + "/" + ns.UserID
}

// Memory is a free-text fact about a user
type Memory struct {
	ID        MemoryID           `firestore:"id" json:"id"`
	Text      string             `firestore:"text" json:"text"`
	Embedding firestore.Vector32 `firestore:"embedding" json:"-"`
	CreatedAt time.Time          `firestore:"created_at" json:"created_at"`
	UpdatedAt time.Time          `firestore:"updated_at" json:"updated_at"`

	// Score is the cosine similarity to the query; set by search only
	Score float64 `firestore:"-" json:"-"`
}
