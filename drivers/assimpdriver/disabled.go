//go:build !assimp

package assimpdriver

const Available = false
