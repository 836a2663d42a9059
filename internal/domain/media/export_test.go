package media

// Test-only hooks for the external media_test package, which cannot live in
// package media because it imports database (database imports media).

type UploadResponse = uploadResponse

func SetServiceRepo(s *Service, repo Repository) { s.repo = repo }
