// Package auth provides account authentication with a stateful refresh-token
// lifecycle: registration with email activation, credential login, refresh
// rotation, logout, and proof-based password reset.
//
// Account lifecycle:
//   - Accounts carry an AccountStatus that is persisted via Bun. New accounts
//     start in pending_verification and only become active once an activation
//     proof is consumed; disabled is terminal.
//   - AccountStateMachine centralizes the transition graph and persistence.
//     LifecycleManager drives it for registration and activation.
//
// Tokens:
//   - TokenService signs and verifies the two JWT profiles. Access tokens are
//     stateless and carry role claims; refresh tokens are recorded in the
//     store so they can be revoked.
//   - RefreshTokens is the system of record for revocability. Rotation and
//     revocation are single atomic statements, so a refresh token is usable
//     at most once no matter how calls interleave.
//
// Proofs:
//   - AccountProofs stores single-use activation and password-reset secrets.
//     Consuming a proof is a compare-and-set, so a link from an email can
//     authorize at most one state change.
package auth
