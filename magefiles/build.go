//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const (
	stampShaderSource = "engine/assets/shaders/stamp.comp"
	stampShaderOutput = "engine/assets/shaders/stamp.spv"
)

// Compiles the GLSL stamp program to SPIR-V for the shader_path setting.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary.
func (Build) Testbed() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/framestamp", "."), withStream())
	return err
}

func buildShaders() error {
	_, err := executeCmd("glslc", withArgs("--target-env=vulkan1.1", stampShaderSource, "-o", stampShaderOutput), withStream())
	return err
}
