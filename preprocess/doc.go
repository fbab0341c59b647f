// Package preprocess holds the transforms a model is trained behind.
//
// Features pass through a StandardScaler and then a PCA keeping at most
// MaxComponents directions; the target passes through its own
// StandardScaler. All three marshal to JSON so they can be stored next to
// the model and replayed at forecast time.
//
//	var scaler preprocess.StandardScaler
//	scaled, err := scaler.FitTransform(features)
//
//	var pca preprocess.PCA
//	reduced, err := pca.FitTransform(scaled)
package preprocess
