// Package mainboilerplate contains shared boilerplate for this project's
// programs: logging and diagnostics initialization, and the parsing of
// combined INI, environment, and flag configuration.
package mainboilerplate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

var (
	// Version of the program, set at build time via -ldflags.
	Version = "development"
	// BuildDate of the program, set at build time via -ldflags.
	BuildDate = "unknown"
)

// ConfigPrefixes are directories searched, in order, for a named INI file:
//   - The current working directory.
//   - ~/.config/obsmap (under the users's $HOME or %UserProfile% directory).
func ConfigPrefixes() []string {
	return []string{
		".",
		filepath.Join(os.Getenv("HOME"), ".config", "obsmap"),
		filepath.Join(os.Getenv("UserProfile"), ".config", "obsmap"),
	}
}

// ParseConfigFile parses the first INI file named |configName| found under
// one of |prefixes|. Unknown INI options are ignored. It returns the path of
// the parsed file, or an empty path if no file was found.
func ParseConfigFile(parser *flags.Parser, configName string, prefixes []string) (string, error) {
	// Allow unknown options while parsing an INI file.
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown
	defer func() { parser.Options = origOptions }()

	var iniParser = flags.NewIniParser(parser)

	for _, prefix := range prefixes {
		var path = filepath.Join(prefix, configName)

		if err := iniParser.ParseFile(path); err == nil {
			return path, nil
		} else if os.IsNotExist(err) {
			// Pass.
		} else {
			return "", err
		}
	}
	return "", nil
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file, configured environment bindings, and explicit flags.
// An INI file matching |configName| is searched for in ConfigPrefixes.
func MustParseConfig(parser *flags.Parser, configName string) {
	if _, err := ParseConfigFile(parser, configName, ConfigPrefixes()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	MustParseArgs(parser)
}

// MustParseArgs requires that Parser be able to ParseArgs without error.
func MustParseArgs(parser *flags.Parser) {
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		var flagErr, ok = err.(*flags.Error)
		if !ok {
			Must(err, "fatal error")
		}

		switch flagErr.Type {
		case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
			// These error types indicate a problem in the configuration object
			// |parser| was asked to parse (eg, a developer error rather than input error).
			panic(err)

		case flags.ErrCommandRequired:
			// Extend go-flag's "Please specify one command of: ... " output with the full usage.
			os.Stderr.WriteString("\n")
			parser.WriteHelp(os.Stderr)
			fmt.Fprintf(os.Stderr, "\n%s\n", VersionBanner(parser.Name))
			os.Exit(1)

		case flags.ErrHelp:
			if parser.Options&flags.PrintErrors == 0 {
				parser.WriteHelp(os.Stderr)
			}
			// Help is followed by the banner, whether or not go-flags printed it.
			fmt.Fprintf(os.Stderr, "\n%s\n", VersionBanner(parser.Name))
			os.Exit(0)

		default:
			// Other error types indicate a problem of input. Generally, `go-flags`
			// already prints a helpful message and we can simply exit.
			os.Exit(1)
		}
	}
}

// VersionBanner returns a one-line description of the program |name|, and
// of the Version and BuildDate with which it was built.
func VersionBanner(name string) string {
	return fmt.Sprintf("%s version %s, built at %s.", name, Version, BuildDate)
}

// AddPrintConfigCmd to the Parser. The "print-config" command helps users test
// whether their applications are correctly configured, by exporting all runtime
// configuration in INI format. The export notes the INI file it was combined
// from, and may itself be used as that file.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{Parser: parser, configName: configName, prefixes: ConfigPrefixes(), out: os.Stdout})
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
	configName    string
	prefixes      []string
	out           io.Writer
}

func (p printConfig) Execute([]string) error {
	fmt.Fprintf(p.out, "; %s\n", VersionBanner(p.Parser.Name))

	if path := findConfigFile(p.configName, p.prefixes); path != "" {
		fmt.Fprintf(p.out, "; Combined from %s, environment, and flags.\n\n", path)
	} else {
		fmt.Fprintf(p.out, "; No %s was found. Combined from environment and flags.\n\n", p.configName)
	}

	var ini = flags.NewIniParser(p.Parser)
	ini.Write(p.out, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}

// findConfigFile returns the path of the first file named |configName|
// under |prefixes|, or empty if there is none.
func findConfigFile(configName string, prefixes []string) string {
	for _, prefix := range prefixes {
		var path = filepath.Join(prefix, configName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
