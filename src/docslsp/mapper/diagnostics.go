package mapper

import (
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// BuildResultToPublishDiagnostics converts a build result into one
// PublishDiagnostics payload per affected file. Files listed in previous but
// absent from the result get an empty payload, clearing stale diagnostics in
// the editor.
func BuildResultToPublishDiagnostics(result *entity.BuildResult, previous []uri.URI) []*protocol.PublishDiagnosticsParams {
	out := make([]*protocol.PublishDiagnosticsParams, 0, len(result.Diagnostics))
	for file, diags := range result.Diagnostics {
		out = append(out, &protocol.PublishDiagnosticsParams{
			URI:         file,
			Diagnostics: diags,
		})
	}
	for _, file := range previous {
		if _, ok := result.Diagnostics[file]; !ok {
			out = append(out, &protocol.PublishDiagnosticsParams{
				URI:         file,
				Diagnostics: []protocol.Diagnostic{},
			})
		}
	}
	return out
}

// BuildResultURIs returns the files a build result reports diagnostics for.
func BuildResultURIs(result *entity.BuildResult) []uri.URI {
	uris := make([]uri.URI, 0, len(result.Diagnostics))
	for file := range result.Diagnostics {
		uris = append(uris, file)
	}
	return uris
}
