package parse

import (
	"encoding/json"
	"fmt"

	"github.com/spkg/bom"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

func ParseSupplementary(data []byte) (*model.Supplementary, error) {
	data = bom.Clean(data)
	if leadingByte(data) != '{' {
		return nil, fmt.Errorf("expected object")
	}

	info := &model.Supplementary{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("unmarshaling supplementary: %w", err)
	}

	return info, nil
}
