package types

// Version is the canonical project version.
// The CLI, the frame contract, and the adapter event shape share this
// version under the lockstep versioning policy.
const Version = "0.3.0"
