// Package filelist enumerates the files that make up an environment.
//
// The list is the sorted, deduplicated union of two sets:
//
//   - every entry under the environment root, links not followed, and
//   - the canonical path of every entry reachable while following links.
//
// The second set pulls in files that links inside the environment point to,
// even when they live outside it, so that an archive of the list is
// self-consistent. Intermediate links of a chain that leaves the environment
// are not listed; only the final canonical target is.
package filelist
