package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/pario-ai/oracle/pkg/models"
)

// ErrMissingToken is returned when an endpoint that requires an API key
// has none configured.
var ErrMissingToken = errors.New("missing api token")

// DecodeError reports a provider response that could not be interpreted.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode provider response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Classify maps an error returned by a provider to an outcome error kind.
// Transport errors, timeouts and anything unrecognized count as network
// failures.
func Classify(err error) models.ErrorKind {
	var (
		decErr    *DecodeError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		apiErr    *oai.Error
		genaiErr  genai.APIError
	)
	switch {
	case errors.As(err, &decErr), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return models.ErrProtocolDecodeFailure
	case errors.As(err, &apiErr), errors.As(err, &genaiErr), errors.Is(err, ErrMissingToken):
		return models.ErrProviderError
	default:
		return models.ErrNetworkFailure
	}
}

// RawBody returns the provider response body carried by err, if any.
func RawBody(err error) string {
	var (
		decErr   *DecodeError
		apiErr   *oai.Error
		genaiErr genai.APIError
	)
	switch {
	case errors.As(err, &decErr):
		return string(decErr.Raw)
	case errors.As(err, &apiErr):
		return apiErr.RawJSON()
	case errors.As(err, &genaiErr):
		return genaiErr.Message
	}
	return ""
}
