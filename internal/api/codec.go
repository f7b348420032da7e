package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request is the union of every MatchService request field. Each method
// reads the subset it needs.
type Request struct {
	MatchID         string `json:"matchId"`
	PlayerID        string `json:"playerId"`
	DisplayName     string `json:"displayName"`
	Conn            string `json:"conn"`
	Name            string `json:"name"`
	CreateIfMissing bool   `json:"createIfMissing"`
	Ready           bool   `json:"ready"`
	Col             *int   `json:"col"`
	Row             *int   `json:"row"`
	TowerType       string `json:"towerType"`
	TowerID         string `json:"towerId"`
}

func decodeRequest(in *structpb.Struct) (Request, error) {
	var req Request
	if in == nil {
		return req, nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return req, nil
}

// ToStruct converts any JSON-serialisable value into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromStruct decodes a Struct into a JSON-tagged Go value.
func FromStruct(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// require takes name, value pairs and reports the first empty value.
func require(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidArgument, fields[i])
		}
	}
	return nil
}
