package cache

// Store は注入可能なキー/バリューストアを表します
// 永続化層の選択は上位の責務であり、このコアはインターフェースだけを所有します
type Store interface {
	// Get はキーに対応する値を返します。存在しない場合は ok=false
	Get(key string) (value []byte, ok bool, err error)

	// Put はキーに値を保存します
	Put(key string, value []byte) error

	// Close はストアが保持するリソースを解放します
	Close() error
}
