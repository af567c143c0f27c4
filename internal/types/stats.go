package types

// SyncStats aggregates counters for a whole sync run. The engine owns the
// instance; callers only read the returned copy.
type SyncStats struct {
	UploadedFiles  int   `json:"uploadedFiles"`
	UploadedBytes  int64 `json:"uploadedBytes"`
	MovedFiles     int   `json:"movedFiles"`
	MovedBytes     int64 `json:"movedBytes"`
	DeletedFiles   int   `json:"deletedFiles"`
	DeletedBytes   int64 `json:"deletedBytes"`
	MovedFolders   int   `json:"movedFolders"`
	DeletedFolders int   `json:"deletedFolders"`
}

// Add merges another set of counters into this one.
func (s *SyncStats) Add(other SyncStats) {
	s.UploadedFiles += other.UploadedFiles
	s.UploadedBytes += other.UploadedBytes
	s.MovedFiles += other.MovedFiles
	s.MovedBytes += other.MovedBytes
	s.DeletedFiles += other.DeletedFiles
	s.DeletedBytes += other.DeletedBytes
	s.MovedFolders += other.MovedFolders
	s.DeletedFolders += other.DeletedFolders
}

// Empty reports whether the run did anything at all.
func (s *SyncStats) Empty() bool {
	return s.UploadedFiles == 0 &&
		s.MovedFiles == 0 &&
		s.DeletedFiles == 0 &&
		s.MovedFolders == 0 &&
		s.DeletedFolders == 0
}
