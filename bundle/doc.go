// Package bundle stores a trained model together with the feature scaler, PCA
// reducer and target scaler it was fitted with.
//
// Every artifact is written inside an envelope carrying the training run ID.
// Loading refuses a bundle whose artifacts disagree on the run ID, so a model
// is never paired with a transform from another run.
//
// # Stores
//
//   - FileStore: <root>/<outlet>_models/{model,scaler_exog,pca,scaler_target}.json,
//     replaced atomically by directory rename
//   - RedisStore: one hash per outlet, one field per artifact
//   - CachedStore: LRU cache in front of either
package bundle
