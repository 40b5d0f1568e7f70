// Package file stores the dkansync settings in a TOML file,
// by default ~/.dkansync/config.toml. Dotted keys such as portal.url
// map onto nested tables.
package file
