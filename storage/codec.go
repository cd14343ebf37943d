package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/private-content-market/interfaces"
)

// encodeObject serializes a stored object to its JSON wire form.
func encodeObject(obj interfaces.StoredObject) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object: %w", err)
	}
	return data, nil
}

// decodeObject parses the JSON wire form written by encodeObject.
func decodeObject(data []byte) (interfaces.StoredObject, error) {
	var obj interfaces.StoredObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("failed to decode stored object: %w", err)
	}
	return obj, nil
}

// cloneObject returns a copy that shares no memory with obj.
func cloneObject(obj interfaces.StoredObject) interfaces.StoredObject {
	obj.CipherText = append([]byte(nil), obj.CipherText...)
	return obj
}
