/*
Package docstream implements a streaming, zero-copy document model for
self-describing formats (CBOR, JSON, MessagePack via subpackages).

Producers write structured values through a strictly-typed writer tree;
consumers read them through a strictly-typed reader tree, SAX-style. Encoded
data flows through byte streams; whole documents are never materialized.

# Documents

A document is exactly one of ten kinds (see Tag): undefined, null, boolean,
unsigned integer, signed integer (negative values only; nonnegative ones use
the unsigned kind), float, byte string, text string, array, map. Document is
the runtime union; scalars are carried by value, strings expose an io.Reader,
arrays and maps expose lazy single-pass readers.

# Discipline

Reader and writer trees obey a single-active-child rule: while a nested
child (a container, a string stream, a map key or value) is outstanding, the
parent must not be advanced. Readers forgive an abandoned child by silently
skipping its unconsumed bytes; writers require explicit completion via Close.
A writer may declare an exact size for a string, array or map; closing before
or after exactly that many bytes or elements is a contract violation.

Contract violations (misuse) are distinct from malformed input (codec errors)
and from I/O errors. The base readers and writers only defend where it is
free; wrap a tree in CheckedWriter or CheckedDocument to upgrade every
violation to a *MisuseError.

# Byte streams

The reader trait is io.Reader, the writer trait io.Writer plus an optional
Flush. After a codec or I/O error the whole tree is poisoned: every further
operation returns the same error.
*/
package docstream
