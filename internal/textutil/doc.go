// Package textutil derives filesystem-safe names from container display names.
package textutil
