package sharedcontext

import "strings"

var backendDirMarkers = []string{"backend/", "server/", "api/", "services/", "models/"}
var backendExtensions = []string{".py", ".go", ".rs", ".java", ".rb", ".php"}

var frontendDirMarkers = []string{"frontend/", "client/", "src/", "components/", "views/", "pages/"}
var frontendExtensions = []string{".tsx", ".jsx", ".vue", ".svelte"}

func isBackendFile(relPath string) bool {
	lower := strings.ToLower(relPath)
	for _, marker := range backendDirMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, ext := range backendExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isFrontendFile(relPath string) bool {
	lower := strings.ToLower(relPath)
	for _, marker := range frontendDirMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, ext := range frontendExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// deriveProjectType implements spec §4.D's project-type derivation
// rule over the current file set.
func deriveProjectType(files map[string]FileSummary) ProjectType {
	var backendCount, frontendCount int
	for relPath := range files {
		if isBackendFile(relPath) {
			backendCount++
		}
		if isFrontendFile(relPath) {
			frontendCount++
		}
	}

	switch {
	case backendCount > 0 && frontendCount > 0:
		return ProjectFullstack
	case backendCount > 0:
		return ProjectBackend
	case frontendCount > 0:
		return ProjectFrontend
	default:
		return ProjectUnknown
	}
}

// frameworkToken maps a case-insensitive substring found in registered
// file content to the framework or database name it identifies.
type frameworkToken struct {
	token string
	name  string
}

var backendFrameworkTokens = []frameworkToken{
	{"django", "django"},
	{"fastapi", "fastapi"},
	{"flask", "flask"},
	{"express", "express"},
	{"gin-gonic", "gin"},
	{"net/http", "net/http"},
	{"spring-boot", "spring"},
	{"rails", "rails"},
}

var frontendFrameworkTokens = []frameworkToken{
	{"react", "react"},
	{"vue", "vue"},
	{"svelte", "svelte"},
	{"angular", "angular"},
	{"next.js", "next.js"},
}

var databaseTokens = []frameworkToken{
	{"postgres", "postgresql"},
	{"mysql", "mysql"},
	{"mongodb", "mongodb"},
	{"sqlite", "sqlite"},
	{"redis", "redis"},
	{"qdrant", "qdrant"},
}

// detectFrameworks latches BackendFramework/FrontendFramework/Database
// the first time a matching token appears in registered content; once
// set, a field is never overwritten (spec §4.D "latched").
func detectFrameworks(ps *ProjectStructure, content string) {
	lower := strings.ToLower(content)

	if ps.BackendFramework == "" {
		for _, tok := range backendFrameworkTokens {
			if strings.Contains(lower, tok.token) {
				ps.BackendFramework = tok.name
				break
			}
		}
	}
	if ps.FrontendFramework == "" {
		for _, tok := range frontendFrameworkTokens {
			if strings.Contains(lower, tok.token) {
				ps.FrontendFramework = tok.name
				break
			}
		}
	}
	if ps.Database == "" {
		for _, tok := range databaseTokens {
			if strings.Contains(lower, tok.token) {
				ps.Database = tok.name
				break
			}
		}
	}
}
