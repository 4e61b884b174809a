// Package backend defines the image engine capability that thumbnail jobs
// run against, along with a registry that resolves engines by name. Concrete
// engines live in subpackages (imaging, bild).
package backend
