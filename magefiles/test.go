//go:build mage

package main

import "github.com/magefile/mage/mg"

// Test checks every shader variant then runs the unit tests.
func Test() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
