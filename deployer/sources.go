package deployer

import (
	"os"

	"github.com/kbukum/pipedeploy/errors"
)

// Sources names the files a pipeline is built from. UDFTomlPath is optional.
type Sources struct {
	QueryPath   string `mapstructure:"sql_file" validate:"required"`
	UDFPath     string `mapstructure:"udf_file" validate:"required"`
	UDFTomlPath string `mapstructure:"udf_toml_file"`
}

// Program is the source text read from Sources, passed on verbatim.
type Program struct {
	Query   string
	UDFRust string
	UDFToml string
}

// ReadSources reads the query file, then the UDF file, then the optional
// UDF manifest, each fully into memory. The first unreadable file stops
// the read with SOURCE_UNREADABLE.
func ReadSources(s Sources) (Program, error) {
	var prog Program
	var err error
	if prog.Query, err = readFile(s.QueryPath); err != nil {
		return Program{}, err
	}
	if prog.UDFRust, err = readFile(s.UDFPath); err != nil {
		return Program{}, err
	}
	if s.UDFTomlPath != "" {
		if prog.UDFToml, err = readFile(s.UDFTomlPath); err != nil {
			return Program{}, err
		}
	}
	return prog, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.SourceUnreadable(path, err)
	}
	return string(data), nil
}
