package models

// OutlineEntry is one top-level declaration found in a source file.
type OutlineEntry struct {
	Kind string
	Name string
	Line int // 1-based
}

// FileOutline lists the declarations of one file in source order.
type FileOutline struct {
	RelativePath string
	Entries      []OutlineEntry
}
