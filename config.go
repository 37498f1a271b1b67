package main

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Playfile is the optional project file. It names the entry symbol called
// after a program file is compiled, the signature to call it with, tool
// overrides, and extra libraries for the link line.
type Playfile struct {
	Entry     string   `yaml:"entry"`
	Signature string   `yaml:"signature"`
	Opt       string   `yaml:"opt"`
	Clang     string   `yaml:"clang"`
	Libs      []string `yaml:"libs"`
}

func loadPlayfile(path string) (Playfile, error) {
	doc := Playfile{
		Entry:     "main",
		Signature: "double",
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	if doc.Entry == "" {
		doc.Entry = "main"
	}
	if doc.Signature == "" {
		doc.Signature = "double"
	}
	return doc, nil
}
