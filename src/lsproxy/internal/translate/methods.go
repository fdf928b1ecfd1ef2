package translate

import (
	"go.lsp.dev/protocol"
)

// methodPaths declares, per LSP method, the parameter fields that carry
// paths or URIs. Methods listed here are rewritten only at these fields, so
// free-form strings such as document text are never touched. Any method not
// listed falls back to the generic recursive detector.
var methodPaths = map[string][]fieldPath{
	protocol.MethodInitialize: {
		"rootUri",
		"rootPath",
		"workspaceFolders[].uri",
	},
	protocol.MethodTextDocumentDidOpen: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDidChange: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDidClose: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDidSave: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentWillSave: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentWillSaveWaitUntil: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentCompletion: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentHover: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentSignatureHelp: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDeclaration: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDefinition: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentTypeDefinition: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentImplementation: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentReferences: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDocumentHighlight: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDocumentSymbol: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentCodeAction: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentCodeLens: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentDocumentLink: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentFormatting: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentRangeFormatting: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentOnTypeFormatting: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentRename: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentPrepareRename: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentFoldingRange: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentSelectionRange: {
		"textDocument.uri",
	},
	protocol.MethodTextDocumentPublishDiagnostics: {
		"uri",
		"diagnostics[].relatedInformation[].location.uri",
	},
	protocol.MethodWorkspaceDidChangeWatchedFiles: {
		"changes[].uri",
	},
	protocol.MethodWorkspaceDidChangeWorkspaceFolders: {
		"event.added[].uri",
		"event.removed[].uri",
	},
}
