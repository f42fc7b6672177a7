// Package packaged implements host.Host over deployed .package files.
//
// A package is a tar stream compressed with zstd (gzip is accepted on read
// and detected by magic bytes). Each tar entry is one asset: the entry name
// is the content id and the PAX record ASSET.path carries the source path,
// whose extension selects the decoder. ASSET.category carries the record's
// category when set.
package packaged
