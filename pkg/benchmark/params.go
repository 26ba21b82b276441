package benchmark

import (
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// ParamsFileName is the tunable-parameters file inside a submission dir.
const ParamsFileName = "params.yaml"

func ParamsFile(dir string) string {
	return filepath.Join(dir, ParamsFileName)
}

// WriteParamsFile serializes params, overwriting any previous file.
func WriteParamsFile(dir string, params any) error {
	content, err := yaml.Marshal(params)
	if err != nil {
		return err
	}
	return os.WriteFile(ParamsFile(dir), content, 0o644)
}

// LoadParamsFile fills params from the submission's params.yaml. A missing
// file leaves the defaults untouched.
func LoadParamsFile(dir string, params any) error {
	content, err := os.ReadFile(ParamsFile(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(content, params)
}

// ResetParamsFile removes a stale params file, if present.
func ResetParamsFile(dir string) error {
	if err := os.Remove(ParamsFile(dir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
