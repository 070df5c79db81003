package sink

// AssetResult is the outcome of an asset lookup. Expected absence is a
// result, not an error: NotFound reports a URI with no asset, while errors are
// reserved for genuine failures.
type AssetResult struct {
	Data  []byte
	Found bool
}

// FoundAsset returns a result carrying asset data.
func FoundAsset(data []byte) AssetResult {
	return AssetResult{Data: data, Found: true}
}

// AssetNotFound returns a result reporting that no asset exists for the URI.
func AssetNotFound() AssetResult {
	return AssetResult{}
}

// AssetHandler resolves an asset URI for a viewer. Implementations return
// AssetNotFound() for unknown URIs and reserve the error for I/O failures.
type AssetHandler func(uri string) (AssetResult, error)
