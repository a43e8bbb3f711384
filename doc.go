/*
Package wasifs composes the virtual filesystem a WASI runtime is bootstrapped with.

# Overview

A guest module sees one filesystem, but that filesystem is usually assembled from
several origins: the host directory the embedder chose to expose, an application
bundle shipped as a zip archive, a scratch area, and the three standard streams.
wasifs takes an ordered list of source descriptions, turns each into a
filesystem instance, and layers them into a single handle with first-wins
precedence.

# Key Features

  - Uniform, synchronous, descriptor based FileSystem capability
  - In-memory volumes seeded from a path-to-contents map
  - Device volume with /dev/stdin, /dev/stdout and /dev/stderr pre-opened as 0, 1 and 2
  - Zip archive extraction (stored, deflate and zstd entries) into a volume
  - First-wins union of any number of layers with merged directory listings
  - Optional lookup cache for which layer serves a path
  - absfs and io/fs views of any handle

# Sources

A source is one of the variants Native, Device, Archive, ArchiveFile,
ArchiveURL and Memory. Resolve turns a single source into a filesystem:

	fsys, err := wasifs.Resolve(wasifs.Memory{
	    Contents: wasifs.StringContents(map[string]string{
	        "/etc/motd": "hello\n",
	        "/tmp/":     "",
	    }),
	}, wasifs.Bindings{})

Native resolves to whatever the embedder put in Bindings.FS, which may be nil.
ArchiveFile and ArchiveURL are references: they must be read into memory
first, see the preload package. Resolve never touches the disk or the network.

# Composition

	handle, err := wasifs.Compose([]wasifs.Source{
	    wasifs.Device{},
	    wasifs.Archive{Data: bundle, MountPoint: "/app"},
	    wasifs.Native{},
	}, wasifs.Bindings{FS: wasifs.OSFS("/srv/guest", true)})

With no sources Compose returns an empty volume. A single source is returned
as resolved, without a union. Several sources become a Union; a Native source
with no binding is skipped.

Sources listed earlier take precedence. Reads go to the first layer that has
the path; writes go to the first layer that does not report the path as
missing. Directory listings merge the entries of every layer, earlier layers
hiding same-named entries of later ones.

# Descriptors

Every FileSystem hands out integer descriptors. A Union keeps its own table
and adopts the descriptors its layers already have open, so the standard
streams of a device layer remain 0, 1 and 2 in the composed handle.

# Errors

Resolution failures are typed: *PreResolutionRequiredError,
*ArchiveFormatError, *DeviceDescriptorError and *SpecError. Compose wraps
them with the index and type of the failing source; errors.As still finds
the typed error. None of them are retryable.

# Thread Safety

Handles are meant to be driven by a single runtime thread and perform no
locking of their own. Use one handle per guest instance.

# Limitations

  - Symlinks, hard links and whiteouts are not supported
  - Rename does not move files between layers
  - The io/fs view is read-only
*/
package wasifs
