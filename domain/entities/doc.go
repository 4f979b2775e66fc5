// Package entities provides the core domain types shared by the script runtime
// and the capability registry: the script value model, capability descriptors,
// operator specs and the structured error detail used at the script boundary.
package entities
