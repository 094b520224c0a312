package main

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// print writes v in the selected format
func (c *cli) print(v interface{}) error {
	if c.format == "yaml" {
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
