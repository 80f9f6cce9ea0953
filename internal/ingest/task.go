package ingest

// Task is the queue payload for one uploaded document. The file has already
// been written to FilePath by the upload handler; the pipeline owns it from
// here and removes it when done.
type Task struct {
	DocID           string            `json:"doc_id"`
	LibraryID       string            `json:"library_id"`
	FilePath        string            `json:"file_path"`
	Filename        string            `json:"filename"`
	InterpretImages bool              `json:"interpret_images"`
	NameScrub       bool              `json:"name_scrub"`
	InitialNameMap  map[string]string `json:"initial_name_map,omitempty"`
}
