// Package config defines the format-agnostic model that graph definition and
// node-kind manifest files are loaded into, plus the Loader interface the app
// uses to obtain it. The HCL loader in internal/hcl is the only current
// implementation.
package config
