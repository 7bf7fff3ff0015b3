package corpus

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ItemType partitions indexed items.
type ItemType string

const (
	ItemIssue ItemType = "issue"
	ItemPull  ItemType = "pull"
)

// Dir returns the document directory holding items of this type.
func (t ItemType) Dir() string {
	if t == ItemPull {
		return "pulls"
	}
	return "issues"
}

// Table returns the relational table holding items of this type.
func (t ItemType) Table() string {
	return t.Dir()
}

// ParseItemType accepts singular and plural spellings.
func ParseItemType(value string) (ItemType, error) {
	switch value {
	case "issue", "issues":
		return ItemIssue, nil
	case "pull", "pulls", "pr", "pull_request":
		return ItemPull, nil
	default:
		return "", fmt.Errorf("unknown item type %q (expected issue or pull)", value)
	}
}

// VectorItem is one index entry describing a stored vector.
type VectorItem struct {
	Offset      int      `json:"offset"`
	ID          string   `json:"id"`
	Type        ItemType `json:"type"`
	Repo        string   `json:"repo"`
	Number      int      `json:"number"`
	Title       string   `json:"title"`
	BodyPreview string   `json:"bodyPreview"`
}

// VectorIndexFile is the JSON index stored next to the vector buffer.
type VectorIndexFile struct {
	Dimension int          `json:"dimension"`
	Model     string       `json:"model"`
	Items     []VectorItem `json:"items"`
}

// Vectors holds the flat vector buffer and its index.
type Vectors struct {
	Dimension int
	Model     string
	Items     []VectorItem
	data      []float32
}

// ErrVectorLoad marks fatal vector configuration errors.
var ErrVectorLoad = errors.New("vector store invalid")

// LoadVectors reads the vector buffer and index. Any size, dimension, or offset
// inconsistency is a load error; a zero dim accepts the index dimension.
func LoadVectors(vectorsPath, indexPath string, dim int) (*Vectors, error) {
	rawIndex, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read vector index: %w", err)
	}
	var index VectorIndexFile
	if err := json.Unmarshal(rawIndex, &index); err != nil {
		return nil, fmt.Errorf("parse vector index: %w", err)
	}
	if index.Dimension <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive", ErrVectorLoad)
	}
	if dim > 0 && dim != index.Dimension {
		return nil, fmt.Errorf("%w: index dimension %d does not match configured %d", ErrVectorLoad, index.Dimension, dim)
	}
	raw, err := os.ReadFile(vectorsPath)
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return decodeVectors(raw, index)
}

func decodeVectors(raw []byte, index VectorIndexFile) (*Vectors, error) {
	stride := 4 * index.Dimension
	if len(raw)%stride != 0 {
		return nil, fmt.Errorf("%w: buffer size %d is not a multiple of %d", ErrVectorLoad, len(raw), stride)
	}
	count := len(raw) / stride
	data := make([]float32, len(raw)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	for _, item := range index.Items {
		if item.Offset < 0 || item.Offset >= count {
			return nil, fmt.Errorf("%w: item %s offset %d out of range [0,%d)", ErrVectorLoad, item.ID, item.Offset, count)
		}
		if item.Type != ItemIssue && item.Type != ItemPull {
			return nil, fmt.Errorf("%w: item %s has unknown type %q", ErrVectorLoad, item.ID, item.Type)
		}
	}
	return &Vectors{
		Dimension: index.Dimension,
		Model:     index.Model,
		Items:     index.Items,
		data:      data,
	}, nil
}

// Vector returns the stored vector of an item. The slice aliases the shared
// buffer and must not be modified.
func (v *Vectors) Vector(item VectorItem) []float32 {
	start := item.Offset * v.Dimension
	return v.data[start : start+v.Dimension : start+v.Dimension]
}

// Len reports the number of indexed items.
func (v *Vectors) Len() int {
	return len(v.Items)
}
