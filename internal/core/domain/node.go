package domain

// Node is the hierarchical view of a Record.
// It is one of StandaloneRecord, ParentRecord or ChildRecord.
type Node interface {
	// Base returns the underlying record.
	Base() *Record

	node()
}

// StandaloneRecord has neither a parent nor children.
type StandaloneRecord struct {
	Record Record
}

// ParentRecord is a document that owns chunk children.
type ParentRecord struct {
	Record Record

	// ChildIDs lists the chunk records belonging to this document.
	ChildIDs []int64
}

// ChildRecord is a chunk of a ParentRecord.
type ChildRecord struct {
	Record Record
}

// Base returns the underlying record.
func (n *StandaloneRecord) Base() *Record { return &n.Record }

// Base returns the underlying record.
func (n *ParentRecord) Base() *Record { return &n.Record }

// Base returns the underlying record.
func (n *ChildRecord) Base() *Record { return &n.Record }

// ParentID returns the owning document's ID.
func (n *ChildRecord) ParentID() int64 { return *n.Record.ParentID }

func (*StandaloneRecord) node() {}
func (*ParentRecord) node()     {}
func (*ChildRecord) node()      {}

// Classify builds the Node for a record given the IDs of its children.
// A record carrying both a parent and children violates the two-level
// hierarchy and yields ErrHierarchyDepth.
func Classify(r Record, childIDs []int64) (Node, error) {
	switch {
	case r.ParentID != nil && len(childIDs) > 0:
		return nil, ErrHierarchyDepth
	case r.ParentID != nil:
		return &ChildRecord{Record: r}, nil
	case len(childIDs) > 0:
		return &ParentRecord{Record: r, ChildIDs: childIDs}, nil
	default:
		return &StandaloneRecord{Record: r}, nil
	}
}
