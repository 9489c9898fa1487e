package strategy

import "encoding/json"

// textFieldMapping describes a lexical text field in the engine mapping.
type textFieldMapping struct {
	Type string `json:"type"`
}

// knnVectorMapping describes a knn_vector field in the engine mapping.
type knnVectorMapping struct {
	Type      string          `json:"type"`
	Dimension int             `json:"dimension"`
	Method    knnVectorMethod `json:"method"`
}

type knnVectorMethod struct {
	Name      string `json:"name"`
	SpaceType string `json:"space_type"`
	Engine    string `json:"engine"`
}

// buildEngineMapping produces the shared index mapping shape: text fields
// typed "text", and one knn_vector field per vector field, all dimension D,
// HNSW method, L2 space.
func buildEngineMapping(dimension int, engineName string, textFields, vectorFields []string) ([]byte, error) {
	properties := make(map[string]any, len(textFields)+len(vectorFields))

	for _, f := range textFields {
		properties[f] = textFieldMapping{Type: "text"}
	}

	for _, f := range vectorFields {
		properties[f] = knnVectorMapping{
			Type:      "knn_vector",
			Dimension: dimension,
			Method: knnVectorMethod{
				Name:      "hnsw",
				SpaceType: "l2",
				Engine:    engineName,
			},
		}
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"index.knn": true,
		},
		"mappings": map[string]any{
			"properties": properties,
		},
	}

	return json.Marshal(mapping)
}
