package mapper

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/jsonrpc2"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
)

// RequestToClientConfigRequest maps the parameters from a jsonrpc2.Request into entity.ClientConfigRequest.
func RequestToClientConfigRequest(req jsonrpc2.Request) (*entity.ClientConfigRequest, error) {
	params := entity.ClientConfigRequest{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	if params.Server == "" || params.Container == "" {
		return nil, fmt.Errorf("%s: server and container are required", jsonrpc2.ErrInvalidParams)
	}
	return &params, nil
}

// RequestToTeardownContainerRequest maps the parameters from a jsonrpc2.Request into entity.TeardownContainerRequest.
func RequestToTeardownContainerRequest(req jsonrpc2.Request) (*entity.TeardownContainerRequest, error) {
	params := entity.TeardownContainerRequest{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	if params.Container == "" {
		return nil, fmt.Errorf("%s: container is required", jsonrpc2.ErrInvalidParams)
	}
	return &params, nil
}

func wrapErrParse(err error) error {
	return fmt.Errorf("%s: %w", jsonrpc2.ErrParse, err)
}
