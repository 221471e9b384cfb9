//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed window with the layer in the present path.
func (Run) Testbed() error {
	mg.Deps(Build.Shaders)

	args := []string{"run", "."}
	if cfg := os.Getenv("FRAMESTAMP_CONFIG"); cfg != "" {
		args = append(args, "-config", cfg)
	}
	fmt.Println("Run testbed...")
	_, err := executeCmd("go", withArgs(args...), withStream())
	return err
}

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the stamp core tests with the race detector.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./engine/stamp/...", "./engine/config/...", "./engine/core/..."), withDir("."), withStream())
	return err
}
