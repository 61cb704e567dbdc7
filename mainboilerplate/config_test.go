package mainboilerplate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	gc "gopkg.in/check.v1"
)

type ConfigSuite struct{}

func (s *ConfigSuite) TestParseFirstMatchingConfigFile(c *gc.C) {
	var empty, first, second = c.MkDir(), c.MkDir(), c.MkDir()

	c.Assert(os.WriteFile(filepath.Join(first, "test.ini"), []byte(`
[Application Options]
name = from-first
unknown = is ignored
`), 0644), gc.IsNil)
	c.Assert(os.WriteFile(filepath.Join(second, "test.ini"), []byte(`
[Application Options]
name = from-second
`), 0644), gc.IsNil)

	var cfg struct {
		Name string `long:"name" default:"default-name"`
	}
	var parser = flags.NewParser(&cfg, flags.Default)

	var path, err = ParseConfigFile(parser, "test.ini", []string{empty, first, second})
	c.Check(err, gc.IsNil)
	c.Check(path, gc.Equals, filepath.Join(first, "test.ini"))
	c.Check(cfg.Name, gc.Equals, "from-first")

	// Original parser options are restored.
	c.Check(parser.Options, gc.Equals, flags.Options(flags.Default))
}

func (s *ConfigSuite) TestNoConfigFileFound(c *gc.C) {
	var cfg struct {
		Name string `long:"name" default:"default-name"`
	}
	var parser = flags.NewParser(&cfg, flags.Default)

	var path, err = ParseConfigFile(parser, "missing.ini", []string{c.MkDir()})
	c.Check(err, gc.IsNil)
	c.Check(path, gc.Equals, "")
}

func (s *ConfigSuite) TestMalformedConfigFile(c *gc.C) {
	var dir = c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "bad.ini"), []byte("[unterminated\n"), 0644), gc.IsNil)

	var cfg struct {
		Name string `long:"name"`
	}
	var _, err = ParseConfigFile(flags.NewParser(&cfg, flags.Default), "bad.ini", []string{dir})
	c.Check(err, gc.NotNil)
}

func (s *ConfigSuite) TestMust(c *gc.C) {
	Must(nil, "not raised")

	defer func() {
		var entry, ok = recover().(*log.Entry)
		c.Assert(ok, gc.Equals, true)
		c.Check(entry.Message, gc.Equals, "it failed")
		c.Check(entry.Data["err"], gc.ErrorMatches, "whoops")
		c.Check(entry.Data["key"], gc.Equals, "value")
	}()
	Must(errors.New("whoops"), "it failed", "key", "value")
}

func (s *ConfigSuite) TestVersionBanner(c *gc.C) {
	c.Check(VersionBanner("obsmap"), gc.Equals, "obsmap version development, built at unknown.")
}

func (s *ConfigSuite) TestPrintConfigNotesItsSource(c *gc.C) {
	var cfg struct {
		Log LogConfig `group:"Logging" namespace:"log"`
	}
	var parser = flags.NewParser(&cfg, flags.Default)
	parser.Name = "obsmap"
	var dir = c.MkDir()

	var buf bytes.Buffer
	var cmd = printConfig{Parser: parser, configName: "obsmap.ini", prefixes: []string{dir}, out: &buf}
	var _, err = parser.ParseArgs(nil)
	c.Assert(err, gc.IsNil)

	c.Check(cmd.Execute(nil), gc.IsNil)
	c.Check(buf.String(), gc.Matches, `(?s); obsmap version development, built at unknown.
; No obsmap.ini was found. Combined from environment and flags.
.*level = info.*`)

	c.Assert(os.WriteFile(filepath.Join(dir, "obsmap.ini"), []byte("[Logging]\nlevel = debug\n"), 0644), gc.IsNil)
	buf.Reset()

	c.Check(cmd.Execute(nil), gc.IsNil)
	c.Check(buf.String(), gc.Matches, `(?s).*; Combined from `+regexp.QuoteMeta(filepath.Join(dir, "obsmap.ini"))+`, environment, and flags.*`)
}

func (s *ConfigSuite) TestInitLog(c *gc.C) {
	var prevLevel, prevFormatter = log.GetLevel(), log.StandardLogger().Formatter
	defer func() {
		log.SetLevel(prevLevel)
		log.SetFormatter(prevFormatter)
	}()

	InitLog(LogConfig{Level: "trace", Format: "json"})
	c.Check(log.GetLevel(), gc.Equals, log.TraceLevel)
	var _, ok = log.StandardLogger().Formatter.(*log.JSONFormatter)
	c.Check(ok, gc.Equals, true)

	InitLog(LogConfig{Level: "warn", Format: "color"})
	c.Check(log.GetLevel(), gc.Equals, log.WarnLevel)
	text, ok := log.StandardLogger().Formatter.(*log.TextFormatter)
	c.Assert(ok, gc.Equals, true)
	c.Check(text.ForceColors, gc.Equals, true)
	c.Check(text.FullTimestamp, gc.Equals, true)
}

var _ = gc.Suite(&ConfigSuite{})

func Test(t *testing.T) { gc.TestingT(t) }
