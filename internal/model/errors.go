package model

import "errors"

// Failure kinds shared by fetchers and the orchestrator. Callers classify with errors.Is.
var (
	ErrCredentialMissing = errors.New("api key missing")
	ErrNetwork           = errors.New("network error")
	ErrResponse          = errors.New("empty or unusable response")
	ErrParse             = errors.New("no extractable JSON object")
	ErrBackendContract   = errors.New("backend returned invalid structured JSON")
	ErrBackend           = errors.New("no response from backend")
	ErrBusy              = errors.New("operation already in progress")
	ErrUnknownAsset      = errors.New("unknown asset")
)
