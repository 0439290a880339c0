// Package plugins hosts the record type plugins. Each subpackage registers its
// schemas, identifiers, endpoints and search configuration with a
// core.PluginRegistry and must not depend on storage backends or transports.
package plugins
