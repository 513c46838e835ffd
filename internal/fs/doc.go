// Package fs abstracts the file operations of the local blob store so tests
// can inject write, sync, close and rename failures.
//
// Production code uses fs.Default ([LocalFS]). Tests wrap it in a
// [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("values.bin", fs.Fault{FailAfterBytes: 16})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Only the write path goes through this package. Reads use memory mappings.
package fs
