package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders data as YAML.
type YAMLFormatter struct{}

// Format round-trips data through JSON first, so the YAML keys match
// the json struct tags instead of lowercased Go field names.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var normalized any
	if err := json.Unmarshal(buf, &normalized); err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(normalized); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}
