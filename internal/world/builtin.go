package world

import _ "embed"

//go:embed worlds/corp.yaml
var corpYAML []byte

//go:embed worlds/lab.yaml
var labYAML []byte

// builtinWorlds maps world names to their embedded YAML content.
var builtinWorlds = map[string][]byte{
	"corp": corpYAML,
	"lab":  labYAML,
}
