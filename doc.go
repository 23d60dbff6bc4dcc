// Package obscurcore reads and writes encrypted, authenticated single-file
// archives ("packages") holding any number of heterogeneous payload items.
//
// A package is self-describing: a small plaintext header names the
// manifest cryptography scheme; the manifest itself is encrypted and
// authenticated and lists every payload item with its per-item
// cryptographic configuration; and the payload body interleaves the
// items' individually encrypted-then-MACed streams under a key-dependent
// pseudo-random schedule, so item boundaries are invisible without the
// manifest.
//
// # Writing
//
// Construct a Writer with either a symmetric pre-key or a sender/recipient
// keypair, add items, and write:
//
//	w, err := obscurcore.NewSymmetricWriter(preKey)
//	if err != nil {
//	    return err
//	}
//	w.AddText("notes/hello.txt", "hello")
//	if _, err := w.AddFile("report.pdf"); err != nil {
//	    return err
//	}
//	if err := w.Write(out); err != nil {
//	    return err
//	}
//
// # Reading
//
// Reading is two-phase: authenticate and open the manifest, then extract
// the payload. Extraction verifies every item's MAC; a single mismatch
// aborts the whole read with an error. Plaintext is written to each item's
// sink as it is decrypted, before that item's MAC is checked, so after a
// failed extraction the sinks keep whatever was already written to them.
//
//	r, err := obscurcore.NewSymmetricReader(preKey)
//	if err != nil {
//	    return err
//	}
//	if _, err := r.ReadManifest(in); err != nil {
//	    return err
//	}
//	if err := r.ExtractAll(destDir); err != nil {
//	    return err
//	}
//
// # Key agreement
//
// The UM1Hybrid scheme replaces the shared symmetric pre-key with a
// one-pass unified-model EC agreement: the writer needs the recipient's
// public key and its own private key, the reader the mirror pair. See
// GenerateIdentity for producing keypairs.
//
// # Security model
//
// Everything is Encrypt-then-MAC with the serialized cryptographic
// configuration bound into the MAC transcript, so tampering with either
// ciphertext or configuration fails authentication. MAC comparisons are
// constant time. Key material is wiped when the owning operation returns,
// on success and failure alike. Authenticated cipher modes (GCM) exist in
// the primitive registry but are rejected anywhere in the packaging
// pipeline; the MAC layer is the only authentication path.
package obscurcore
