package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raffle-dev/raffle-tooling/internal/infra/filesystem"
	fsjson "github.com/raffle-dev/raffle-tooling/internal/infra/filesystem/json"
	"gopkg.in/yaml.v3"
)

// FileName is the summary written next to the deployment records.
const FileName = "output.yaml"

type Generator struct {
	path   string
	writer filesystem.Writer
}

func NewGenerator(path string) *Generator {
	return &Generator{path: path, writer: fsjson.NewWriter()}
}

// Generate writes the deployment summary as YAML.
func (g *Generator) Generate(model Model) error {
	contracts := make(map[string]ContractConfig, len(model.Contracts))
	for name, contract := range model.Contracts {
		contract.ABI = SingleQuotedString(compactJSON(string(contract.ABI)))
		contracts[strings.ToLower(name)] = contract
	}
	model.Contracts = contracts

	data, err := yaml.Marshal(&model)
	if err != nil {
		return fmt.Errorf("could not marshal output model. Err: '%w'", err)
	}

	if err := g.writer.WriteBytes(g.path, data); err != nil {
		return fmt.Errorf("could not write output file. Err: '%w'", err)
	}

	return nil
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
