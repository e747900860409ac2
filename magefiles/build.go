//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the todos project using Mage.
//
// Usage:
//
//	mage build          Compile the todo binary to bin/
//	mage install        Install todo to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage lint           Run golangci-lint
//	mage test:all       Run every test
//	mage test:unit      Run tests in short mode
//	mage test:postgres  Run the Postgres backend tests against TODOS_POSTGRES_DSN
//	mage stats          Print Go lines of code per package
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "todo"
	binaryDir  = "bin"
	cmdDir     = "./cmd/todo"
	cliPkg     = "github.com/mesh-intelligence/todos/internal/cli"
)

// ldflags stamps the version from $TODOS_VERSION when it is set.
func ldflags() string {
	v := os.Getenv("TODOS_VERSION")
	if v == "" {
		return ""
	}
	return "-X " + cliPkg + ".Version=" + v
}

// Build compiles the todo binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
